package mockup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func part(name string) ImagePart {
	return ImagePart{Data: name, MimeType: "image/png"}
}

func TestModelPromptHasExactlyOneFaceClause(t *testing.T) {
	for _, hasFace := range []bool{true, false} {
		for _, opts := range []Options{DefaultOptions(), {Gender: GenderFemale, Instructions: "pakai hijab", Watermark: true}} {
			prompt := ModelPrompt(opts, hasFace, "")
			withRef := strings.Contains(prompt, faceReferenceClause)
			generic := strings.Contains(prompt, genericFaceClause)
			assert.True(t, withRef != generic, "hasFace=%v", hasFace)
			assert.Equal(t, hasFace, withRef)
		}
	}
}

func TestModelPromptDefaults(t *testing.T) {
	opts := Options{Gender: "Pria", Age: "", Height: "abc", Weight: ""}

	prompt := ModelPrompt(opts, false, "")

	assert.Contains(t, prompt, "- Model: An Indonesian Pria model, approximately 25 years old.")
	assert.Contains(t, prompt, "Height approximately 170 cm, weight approximately 60 kg.")
	assert.Contains(t, prompt, "- Pose: The model should be in a natural relaxed standing pose.")
	assert.Contains(t, prompt, "- Environment: The background should be a clean white photo studio backdrop.")
	assert.NotContains(t, prompt, "Watermark")
	assert.NotContains(t, prompt, "Additional Instructions")
	assert.True(t, strings.HasSuffix(prompt, "colors, and drape."))
}

func TestModelPromptOptionalClauses(t *testing.T) {
	opts := DefaultOptions()
	opts.Instructions = "  warna pastel  "
	opts.Watermark = true

	prompt := ModelPrompt(opts, true, "Toko Kita")

	assert.Contains(t, prompt, "\n- Additional Instructions: warna pastel\n- Watermark:")
	assert.True(t, strings.HasSuffix(prompt, `with the text "Toko Kita" at the bottom-right corner.`))
}

func TestFlatlayPrompt(t *testing.T) {
	plain := FlatlayPrompt(false, "")
	assert.Equal(t, "Generate a photorealistic flat lay of the uploaded items. Aspect ratio 9:16, top-down angle, neat arrangement, neutral clean background.", plain)

	marked := FlatlayPrompt(true, "")
	assert.True(t, strings.HasPrefix(marked, plain+"\n"))
	assert.Contains(t, marked, `"Khusni'ah Shop"`)
}

func TestModelImagesOrdering(t *testing.T) {
	var a Assets
	a.Slots[5] = part("tas")
	a.Slots[1] = part("bawahan")
	a.Face = part("face")

	got := ModelImages(a)
	require.Len(t, got, 3)
	assert.Equal(t, []ImagePart{part("bawahan"), part("tas"), part("face")}, got)
	assert.Equal(t, got, ModelImages(a))

	a.FullOutfit = part("outfit")
	assert.Equal(t, []ImagePart{part("outfit"), part("face")}, ModelImages(a))

	a.Face = ImagePart{}
	assert.Equal(t, []ImagePart{part("outfit")}, ModelImages(a))
}

func TestFlatlayImagesSkipsFullOutfitAndFace(t *testing.T) {
	var a Assets
	a.Slots[0] = part("atasan")
	a.FullOutfit = part("outfit")
	a.Face = part("face")

	assert.Equal(t, []ImagePart{part("atasan")}, FlatlayImages(a))
}
