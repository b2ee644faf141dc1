package suggest

import (
	"fmt"
	"strings"
)

// RecommendCount is how many games the model is asked for.
const RecommendCount = 8

var experienceLabels = map[string]string{
	"beginner": "纯新手（很少或从未玩过游戏）",
	"casual":   "轻度玩家（偶尔玩玩，不太深入）",
	"moderate": "中度玩家（有一定经验，会主动找游戏玩）",
	"hardcore": "硬核玩家（游戏老手，追求挑战和深度）",
}

var purposeLabels = map[string]string{
	"competitive": "竞技对抗",
	"relaxing":    "休闲放松",
	"story":       "剧情沉浸",
	"social":      "社交互动",
	"creative":    "创意建造",
}

var genreLabels = map[string]string{
	"action":     "动作",
	"rpg":        "RPG",
	"shooter":    "射击",
	"strategy":   "策略",
	"simulation": "模拟",
	"adventure":  "冒险",
	"sports":     "体育",
	"puzzle":     "解谜",
	"racing":     "竞速",
	"horror":     "恐怖",
	"rhythm":     "音游",
	"roguelike":  "Roguelike",
}

var deviceLabels = map[string]string{
	"phone":    "手机",
	"tablet":   "平板",
	"pc":       "PC",
	"handheld": "掌机（如 Nintendo Switch）",
	"console":  "主机（如 PS5 / Xbox）",
}

var ageLabels = map[string]string{
	"classic": "偏好经典老游戏",
	"new":     "只玩近几年的新作",
	"both":    "新旧都可以",
}

// label returns the display label for key, or key itself when unmapped.
func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return key
}

func joinLabels(labels map[string]string, keys []string) string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, label(labels, k))
	}
	return strings.Join(out, "、")
}

// BuildPrompt renders the recommendation prompt for a player profile.
func BuildPrompt(p Profile) string {
	age := p.AgePreference
	if age == "" {
		age = "both"
	}

	favorites := "未提供"
	if len(p.FavoriteGames) > 0 {
		favorites = strings.Join(p.FavoriteGames, "、")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "你是一位资深游戏推荐专家，熟悉全球各平台的游戏。根据以下玩家画像，推荐 %d 款最适合的游戏。\n\n", RecommendCount)
	b.WriteString("【玩家画像】\n")
	fmt.Fprintf(&b, "- 游戏经验：%s\n", label(experienceLabels, p.ExperienceLevel))
	fmt.Fprintf(&b, "- 每周游戏时间：约 %d 小时\n", p.WeeklyHours)
	fmt.Fprintf(&b, "- 游戏目的：%s\n", joinLabels(purposeLabels, p.Purposes))
	fmt.Fprintf(&b, "- 偏好类型：%s\n", joinLabels(genreLabels, p.GenrePreferences))
	fmt.Fprintf(&b, "- 可用设备：%s\n", joinLabels(deviceLabels, p.Devices))
	if len(p.PlatformPreferences) > 0 {
		fmt.Fprintf(&b, "- 平台偏好：%s\n", strings.Join(p.PlatformPreferences, "、"))
	}
	fmt.Fprintf(&b, "- 新旧偏好：%s\n", label(ageLabels, age))
	fmt.Fprintf(&b, "- 喜欢的游戏：%s\n", favorites)
	b.WriteString(`
【要求】
1. 推荐的游戏必须是真实存在、已发售的游戏，绝不能编造
2. 必须能在玩家的设备上运行
3. 难度和游戏深度应与玩家经验匹配
4. 优先推荐符合玩家游戏目的的作品
5. 如果玩家每周游戏时间少于 5 小时，避免推荐需要大量时间投入的 MMO 或超长 RPG
6. 如果玩家列出了喜欢的游戏，推荐风格相似但不同的作品（不要重复推荐玩家已经玩过的）
7. 推荐理由必须针对该玩家个性化，说明为什么这款游戏适合 TA
8. name_en 必须是游戏的准确英文名（用于搜索游戏数据库），注意拼写正确`)

	return b.String()
}
