package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testProfile() Profile {
	return Profile{
		ExperienceLevel:  "casual",
		WeeklyHours:      4,
		Purposes:         []string{"relaxing", "story"},
		GenrePreferences: []string{"simulation", "metroidvania"},
		Devices:          []string{"pc", "handheld"},
		AgePreference:    "new",
		FavoriteGames:    []string{"Stardew Valley", "Celeste"},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testProfile())

	assert.Contains(t, prompt, "推荐 8 款最适合的游戏")
	assert.Contains(t, prompt, "- 游戏经验：轻度玩家（偶尔玩玩，不太深入）")
	assert.Contains(t, prompt, "- 每周游戏时间：约 4 小时")
	assert.Contains(t, prompt, "- 游戏目的：休闲放松、剧情沉浸")
	assert.Contains(t, prompt, "- 偏好类型：模拟、metroidvania", "unmapped keys pass through")
	assert.Contains(t, prompt, "- 可用设备：PC、掌机（如 Nintendo Switch）")
	assert.Contains(t, prompt, "- 新旧偏好：只玩近几年的新作")
	assert.Contains(t, prompt, "- 喜欢的游戏：Stardew Valley、Celeste")
	assert.Contains(t, prompt, "name_en 必须是游戏的准确英文名")
	assert.NotContains(t, prompt, "平台偏好")
}

func TestBuildPrompt_Defaults(t *testing.T) {
	p := testProfile()
	p.AgePreference = ""
	p.FavoriteGames = nil
	p.PlatformPreferences = []string{"Steam", "Switch"}

	prompt := BuildPrompt(p)

	assert.Contains(t, prompt, "- 新旧偏好：新旧都可以")
	assert.Contains(t, prompt, "- 喜欢的游戏：未提供")
	assert.Contains(t, prompt, "- 平台偏好：Steam、Switch")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "硬核玩家（游戏老手，追求挑战和深度）", label(experienceLabels, "hardcore"))
	assert.Equal(t, "expert", label(experienceLabels, "expert"))
	assert.Equal(t, "", joinLabels(genreLabels, nil))
}
