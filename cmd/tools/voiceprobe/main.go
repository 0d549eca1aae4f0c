package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cybergenix/niva/backend/internal/config"
	"github.com/cybergenix/niva/backend/internal/model/chat"
	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
	"github.com/cybergenix/niva/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	text := flag.String("text", "", "待合成文本")
	voice := flag.String("voice", "", "声音 ID，默认使用 TTS_VOICE_ID")
	outputPath := flag.String("out", "", "输出音频文件路径 (默认根据格式自动生成)")
	raw := flag.Bool("raw", false, "直接合成原文，不截断也不做口型分析")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")
	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal("请通过 -text 提供待合成文本")
	}

	speechCfg, err := config.LoadSpeech()
	if err != nil {
		log.Fatalf("语音配置加载失败: %v", err)
	}

	svc, err := speech.NewService(speechCfg)
	if err != nil {
		log.Fatalf("语音服务初始化失败: %v", err)
	}

	if *voice == "" {
		*voice = speechCfg.VoiceID
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Printf("开始合成: provider=%s voice=%s lipsync=%t raw=%t", speechCfg.Provider, *voice, svc.LipSyncEnabled(), *raw)
	started := time.Now()

	msg := chat.Message{Text: *text}
	if *raw {
		resp, err := svc.Synthesize(ctx, &speechmodel.TTSRequest{Text: *text, Voice: *voice})
		if err != nil {
			log.Fatalf("合成失败: %v", err)
		}
		msg.Audio = resp.AudioData
	} else {
		if short := speech.ShortenForSpeech(*text); short != *text {
			log.Printf("朗读文本已截断: %q", short)
		}
		if err := svc.Render(ctx, 0, &msg, *voice); err != nil {
			log.Fatalf("合成失败: %v", err)
		}
	}

	if *outputPath == "" {
		*outputPath = fmt.Sprintf("voiceprobe-%d.%s", time.Now().Unix(), extension(speechCfg.Provider))
	}
	if err := os.WriteFile(*outputPath, msg.Audio, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}
	log.Printf("合成成功: 输出文件 %s, %d bytes, 耗时=%s", *outputPath, len(msg.Audio), time.Since(started).Round(time.Millisecond))

	if msg.Lipsync != nil {
		cuesPath := strings.TrimSuffix(*outputPath, "."+extension(speechCfg.Provider)) + ".json"
		data, err := json.MarshalIndent(msg.Lipsync, "", "  ")
		if err != nil {
			log.Fatalf("序列化口型数据失败: %v", err)
		}
		if err := os.WriteFile(cuesPath, data, 0o644); err != nil {
			log.Fatalf("写入口型数据失败: %v", err)
		}
		log.Printf("口型数据: %s (%d cues)", cuesPath, len(msg.Lipsync.MouthCues))
	}
}

func extension(provider string) string {
	if provider == config.TTSProviderLocal {
		return "wav"
	}
	return "mp3"
}
