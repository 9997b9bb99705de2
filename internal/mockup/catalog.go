package mockup

type NamedOption struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Prompt string `json:"-"`
}

const (
	GenderMale   = "Pria"
	GenderFemale = "Wanita"
)

var poses = []NamedOption{
	{Key: "standing", Name: "Berdiri santai", Prompt: "natural relaxed standing"},
	{Key: "walking", Name: "Berjalan", Prompt: "casual mid-stride walking"},
	{Key: "hand_in_pocket", Name: "Tangan di saku", Prompt: "confident hand-in-pocket"},
	{Key: "over_shoulder", Name: "Menoleh ke belakang", Prompt: "looking-over-the-shoulder"},
	{Key: "sitting", Name: "Duduk", Prompt: "casual sitting-on-a-stool"},
	{Key: "editorial", Name: "Editorial", Prompt: "dynamic fashion editorial"},
}

var backgrounds = []NamedOption{
	{Key: "studio_white", Name: "Studio putih", Prompt: "a clean white photo studio backdrop"},
	{Key: "studio_grey", Name: "Studio abu-abu", Prompt: "a soft grey seamless studio backdrop"},
	{Key: "urban_street", Name: "Jalanan kota", Prompt: "a modern urban street with soft daylight"},
	{Key: "cafe", Name: "Kafe", Prompt: "a cozy minimalist cafe interior"},
	{Key: "garden", Name: "Taman", Prompt: "a lush green garden in warm afternoon light"},
	{Key: "beach", Name: "Pantai", Prompt: "a bright tropical beach"},
	{Key: "living_room", Name: "Ruang tamu", Prompt: "a bright minimalist living room"},
}

func Genders() []string {
	return []string{GenderMale, GenderFemale}
}

func Poses() []NamedOption {
	out := make([]NamedOption, len(poses))
	copy(out, poses)
	return out
}

func Backgrounds() []NamedOption {
	out := make([]NamedOption, len(backgrounds))
	copy(out, backgrounds)
	return out
}

func findOption(list []NamedOption, key string) (NamedOption, bool) {
	for _, o := range list {
		if o.Key == key {
			return o, true
		}
	}
	return NamedOption{}, false
}
