// Package persona 根据宠物档案渲染发送给聊天接口的系统提示词。
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"tikitaka-go/internal/model"
)

//go:embed default_prompt.tmpl
var defaultTemplate string

// Renderer 渲染人设提示词。
type Renderer struct {
	tmpl *template.Template
}

type promptData struct {
	Pet         model.Pet
	Owner       string
	Personality string
	Friend      string
}

// NewRenderer 从 path 读取模板；path 为空时使用内置模板。
func NewRenderer(path string) (*Renderer, error) {
	text := defaultTemplate
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取人设模板失败: %w", err)
		}
		text = string(b)
	}
	return Parse(text)
}

// Parse 解析模板文本。
func Parse(text string) (*Renderer, error) {
	tmpl, err := template.New("persona").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("解析人设模板失败: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render 渲染 pet 的系统提示词。
func (r *Renderer) Render(pet model.Pet) (string, error) {
	owner := strings.TrimSpace(pet.OwnerName)
	if owner == "" {
		owner = model.DefaultOwnerName
	}
	var sb strings.Builder
	err := r.tmpl.Execute(&sb, promptData{
		Pet:         pet,
		Owner:       owner,
		Personality: strings.Join(pet.Personality, ", "),
		Friend:      strings.Join(pet.Friend, ", "),
	})
	if err != nil {
		return "", fmt.Errorf("渲染人设模板失败: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
