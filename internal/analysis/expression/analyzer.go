package expression

import (
	"strings"

	"github.com/cybergenix/niva/backend/internal/model/chat"
)

// Decision 给出头像应使用的表情、动画以及命中得分。
type Decision struct {
	Expression chat.FacialExpression
	Animation  chat.Animation
	Score      int
}

// 没有明显情绪时按普通讲解处理
var neutral = Decision{Expression: chat.ExpressionSmile, Animation: chat.AnimationTalking1}

var keywordBuckets = map[chat.FacialExpression][]string{
	chat.ExpressionSmile: {
		"happy", "glad", "great", "awesome", "amazing", "thanks", "thank you", "love", "wonderful",
		"enjoy", "celebrat", "success", "开心", "高兴", "喜欢", "太好了",
	},
	chat.ExpressionSad: {
		"sad", "sorry", "unhappy", "crying", "depressed", "tragedy", "upset", "hurt", "lonely",
		"died", "death", "killed", "disaster", "难过", "伤心", "失落",
	},
	chat.ExpressionAngry: {
		"angry", "furious", "annoyed", "outrage", "hatred", "attack",
		"生气", "愤怒",
	},
	chat.ExpressionSurprised: {
		"wow", "unbelievable", "incredible", "surprising", "shocking", "can't believe", "largest",
		"record", "discovered", "哇", "惊喜",
	},
	chat.ExpressionFunnyFace: {
		"haha", "lol", "joke", "funny", "silly", "prank", "哈哈", "笑死",
	},
}

var animations = map[chat.FacialExpression]chat.Animation{
	chat.ExpressionSmile:     chat.AnimationTalking1,
	chat.ExpressionSad:       chat.AnimationCrying,
	chat.ExpressionAngry:     chat.AnimationAngry,
	chat.ExpressionSurprised: chat.AnimationTerrified,
	chat.ExpressionFunnyFace: chat.AnimationLaughing,
}

// 遍历顺序固定，同分时靠前的表情优先
var bucketOrder = []chat.FacialExpression{
	chat.ExpressionSad,
	chat.ExpressionAngry,
	chat.ExpressionSurprised,
	chat.ExpressionFunnyFace,
	chat.ExpressionSmile,
}

// Analyze 根据用户问题与回复文本推断头像表情。回复本身没有情绪时参考用户的情绪，
// 伤心或生气的用户得到安抚性的微笑。
func Analyze(query, answer string) Decision {
	final := scoreText(answer)
	if final.Score == 0 {
		final = coerceFromUser(scoreText(query))
	}
	if final.Score == 0 {
		return neutral
	}
	return final
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{}
	}

	scores := make(map[chat.FacialExpression]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	if exclamations := strings.Count(text, "!"); exclamations > 1 {
		scores[chat.ExpressionSurprised] += exclamations
	} else if exclamations == 1 {
		scores[chat.ExpressionSmile] += 2
	}

	best := Decision{}
	for _, label := range bucketOrder {
		if s := scores[label]; s > best.Score {
			best = Decision{Expression: label, Animation: animations[label], Score: s}
		}
	}
	return best
}

func coerceFromUser(user Decision) Decision {
	switch user.Expression {
	case chat.ExpressionSad, chat.ExpressionAngry:
		return Decision{Expression: chat.ExpressionSmile, Animation: chat.AnimationTalking0, Score: user.Score}
	default:
		return user
	}
}
