// Package wizard 定义了宠物档案引导问答的固定顺序与每一步的输入规则。
//
// 问答是一条线性序列：name → age → type → breed → gender → image → personality →
// friend → favorite → dislike → description → checkInformation。
// 唯一的回边是在 checkInformation 选择"수정하기"后回到 name，已填写的值保留。
package wizard

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"tikitaka-go/internal/model"
)

// Step 是问答中的一个字段。
type Step string

const (
	StepName             Step = "name"
	StepAge              Step = "age"
	StepType             Step = "type"
	StepBreed            Step = "breed"
	StepGender           Step = "gender"
	StepImage            Step = "image"
	StepPersonality      Step = "personality"
	StepFriend           Step = "friend"
	StepFavorite         Step = "favorite"
	StepDislike          Step = "dislike"
	StepDescription      Step = "description"
	StepCheckInformation Step = "checkInformation"
)

// Steps 是问答的固定顺序。
var Steps = []Step{
	StepName,
	StepAge,
	StepType,
	StepBreed,
	StepGender,
	StepImage,
	StepPersonality,
	StepFriend,
	StepFavorite,
	StepDislike,
	StepDescription,
	StepCheckInformation,
}

// InputKind 描述某一步期望的输入方式。
type InputKind string

const (
	InputText    InputKind = "text"
	InputSingle  InputKind = "single"
	InputMulti   InputKind = "multi"
	InputPhoto   InputKind = "photo"
	InputConfirm InputKind = "confirm"
)

var (
	ErrUnknownStep   = errors.New("unknown wizard step")
	ErrEmptyAnswer   = errors.New("answer is empty")
	ErrInvalidChoice = errors.New("choice is not one of the options")
	ErrWrongInput    = errors.New("step does not accept this kind of input")
)

var prompts = map[Step]string{
	StepName:             "대화하고 싶은 반려동물의 이름이 뭐야?",
	StepAge:              "와! 이름이 너무 멋진걸? 몇 살이야?",
	StepType:             "그렇구나. 어떤 동물이야?",
	StepBreed:            "종이 있다면 알려줘. 하나뿐인 믹스도 얼마든지!",
	StepGender:           "성별은 어떻게 돼? 없다면 없음을 선택해 줘.",
	StepImage:            "혹시 사진 있어? 없다면 넘어가도 좋아.",
	StepPersonality:      "그러면 이제 성격에 대해 알려줄래?",
	StepFriend:           "사람을 좋아해? 아니면 다른 동물 친구들을 좋아해?",
	StepFavorite:         "또 좋아하는 것이 있어? 예를 들어 좋아하는 음식이나 좋아하는 장난감 등등",
	StepDislike:          "싫어하는 건 어떤거야? 없다면 없다고 해도 좋아!",
	StepDescription:      "추가로 설명하고 싶은 것이 있어? 추억이나 특별한 이야기 등등... 없으면 없다고 해도 돼.",
	StepCheckInformation: "너의 반려동물에 대한 정보가 맞는지 확인해 줘.",
}

var placeholders = map[Step]string{
	StepName:             "예) 토토, 도리, 호떡이 등",
	StepAge:              "예) 1살, 8개월, 6년 등",
	StepType:             "예) 강아지, 고양이, 도마뱀 등",
	StepBreed:            "예) 포메라니안, 블루화이트, 믹스 등",
	StepGender:           "예) 남자, 여자, 중성화, 없음",
	StepImage:            "예) 토토의 사진, 도리의 사진, 호떡이의 사진 등",
	StepPersonality:      "예) 활발한, 소심한, 애교많은, 독립적인, 사교적인, 겁많은, 용감한, 장난꾸러기, 차분한, 예민한",
	StepFriend:           "예) 사람, 같은 동물, 다른 동물, 혼자가 좋아",
	StepFavorite:         "예) 수박 껍질, 터그 놀이, 주인 빼고 다 등",
	StepDislike:          "예) 사람 손길, 당근, 다른 동물 등",
	StepDescription:      "예) 무지개별, 개냥이, 보호소 출신 등",
	StepCheckInformation: "정보가 맞는지 확인해줘.",
}

// 选项列表。
var (
	GenderOptions      = []string{"남자", "여자", "중성화", "없음"}
	PersonalityOptions = []string{"활발한", "소심한", "애교많은", "독립적인", "사교적인", "겁많은", "용감한", "장난꾸러기", "차분한", "예민한", "게으른", "호기심 많은", "까칠한"}
	FriendOptions      = []string{"사람", "같은 동물", "다른 동물", "혼자가 좋아"}
)

// 机器人在问答过程中使用的固定台词。
const (
	CompletionMessage  = "정보 입력 완료! 이제 대화를 시작해보자."
	PhotoUploadedEcho  = "사진이 잘 등록됐어!"
	PhotoUploadingText = "사진을 업로드하고 있어 💓"
	PhotoFailedText    = "사진 업로드에 실패했어😞 다시 시도해줄래?"
	monthSuffix        = "개월"
)

// Greeting 返回问答开始时机器人的自我介绍。
func Greeting(ownerName string) string {
	return fmt.Sprintf("안녕 %s! 나는 벨롱이야. 반려동물의 정보를 차근차근 알려줄래?", ownerName)
}

// Valid 判断 s 是否为已知的步骤。
func Valid(s Step) bool {
	return slices.Contains(Steps, s)
}

// Prompt 返回某一步机器人提出的问题。
func Prompt(s Step) string {
	return prompts[s]
}

// Placeholder 返回某一步输入框的示例文字。
func Placeholder(s Step) string {
	return placeholders[s]
}

// Kind 返回某一步的输入方式。
func Kind(s Step) InputKind {
	switch s {
	case StepGender:
		return InputSingle
	case StepPersonality, StepFriend:
		return InputMulti
	case StepImage:
		return InputPhoto
	case StepCheckInformation:
		return InputConfirm
	default:
		return InputText
	}
}

// Options 返回选择题步骤的候选项，其余步骤返回 nil。
func Options(s Step) []string {
	switch s {
	case StepGender:
		return GenderOptions
	case StepPersonality:
		return PersonalityOptions
	case StepFriend:
		return FriendOptions
	}
	return nil
}

// Next 返回 s 之后的步骤；checkInformation 是终点，返回自身。
func Next(s Step) Step {
	i := slices.Index(Steps, s)
	if i < 0 || i == len(Steps)-1 {
		return s
	}
	return Steps[i+1]
}

// Answer 是用户对某一步的回答：自由文本或从候选项中选择。
type Answer struct {
	Text    string
	Choices []string
}

// Apply 把回答写入草稿 pet 的对应字段，返回作为用户消息回显的文本。
// 调用方负责随后推进到 Next(step)。
func Apply(pet *model.Pet, step Step, ans Answer) (string, error) {
	text := strings.TrimSpace(ans.Text)
	switch Kind(step) {
	case InputText:
		if text == "" {
			return "", ErrEmptyAnswer
		}
		applyText(pet, step, text)
		return text, nil
	case InputSingle:
		choice := text
		if len(ans.Choices) > 0 {
			choice = strings.TrimSpace(ans.Choices[0])
		}
		if choice == "" {
			return "", ErrEmptyAnswer
		}
		if !slices.Contains(GenderOptions, choice) {
			return "", fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
		}
		pet.Gender = choice
		return choice, nil
	case InputMulti:
		var picked []string
		if len(ans.Choices) > 0 {
			for _, c := range ans.Choices {
				c = strings.TrimSpace(c)
				if !slices.Contains(Options(step), c) {
					return "", fmt.Errorf("%w: %q", ErrInvalidChoice, c)
				}
				picked = appendUnique(picked, c)
			}
		} else {
			// 手动输入时按逗号拆分，不校验候选项
			for _, item := range strings.Split(text, ",") {
				if item = strings.TrimSpace(item); item != "" {
					picked = appendUnique(picked, item)
				}
			}
		}
		if len(picked) == 0 {
			return "", ErrEmptyAnswer
		}
		if step == StepPersonality {
			pet.Personality = picked
		} else {
			pet.Friend = picked
		}
		return strings.Join(picked, ", "), nil
	case InputPhoto, InputConfirm:
		return "", ErrWrongInput
	}
	return "", ErrUnknownStep
}

func applyText(pet *model.Pet, step Step, text string) {
	switch step {
	case StepName:
		pet.Name = text
	case StepAge:
		pet.Age = ParseAge(text)
	case StepType:
		pet.Type = text
	case StepBreed:
		pet.Breed = text
	case StepFavorite:
		pet.Favorite = text
	case StepDislike:
		pet.Dislike = text
	case StepDescription:
		pet.Description = text
	}
}

// MaxAge 是年龄的上限，超出的数字按 MaxAge 保存。
const MaxAge = 999

// ParseAge 把"3살"、"6년"之类的输入转换为整数岁数。
// 含"개월"的输入视为不满一岁返回 0；没有前导数字时返回 0；大于 MaxAge 时取 MaxAge。
func ParseAge(input string) int {
	input = strings.TrimSpace(input)
	if strings.Contains(input, monthSuffix) {
		return 0
	}
	age := 0
	for _, r := range input {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			break
		}
		age = min(age*10+int(r-'0'), MaxAge)
	}
	return age
}

// Summary 返回 checkInformation 步骤展示的档案汇总，行之间以 <br /> 分隔。
func Summary(pet model.Pet) string {
	lines := []string{
		"이름: " + pet.Name,
		fmt.Sprintf("나이: %d살", pet.Age),
		"종류: " + pet.Type,
		"품종: " + pet.Breed,
		"성별: " + pet.Gender,
		"성격: " + strings.Join(pet.Personality, ", "),
		"좋아하는 친구: " + strings.Join(pet.Friend, ", "),
		"좋아하는 것: " + pet.Favorite,
		"싫어하는 것: " + pet.Dislike,
		"추가 설명: " + pet.Description,
	}
	return strings.Join(lines, "<br />")
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
