package mockup

import (
	"fmt"
	"strings"
)

const DefaultBrand = "Khusni'ah Shop"

const (
	faceReferenceClause = "- Face Reference: Use the additionally provided image as a strong reference for the model's facial features, ensuring the generated face is highly consistent with it."
	genericFaceClause   = "- Face: Include a realistic face with natural Indonesian features: medium-dark hair, brown to tan skin tones, and a natural Asian facial structure. The face must be AI-generated, generic, and not resemble any specific real person or celebrity."
)

// VideoInstruction asks the text model for an image-to-video prompt.
const VideoInstruction = "Based on this image, create a short, descriptive prompt for an image-to-video AI model like Google VEO. The prompt should describe the person, their clothing, the background, and suggest a simple, subtle animation (like a gentle breeze, a slow smile, or a slight turn of the head). The output should be only the prompt text, nothing else, in English."

func watermarkClause(brand string) string {
	if strings.TrimSpace(brand) == "" {
		brand = DefaultBrand
	}
	return fmt.Sprintf("- Watermark: Add a subtle, semi-transparent watermark with the text \"%s\" at the bottom-right corner.", brand)
}

func FlatlayPrompt(watermark bool, brand string) string {
	var b strings.Builder
	b.WriteString("Generate a photorealistic flat lay of the uploaded items. Aspect ratio 9:16, top-down angle, neat arrangement, neutral clean background.")
	if watermark {
		b.WriteString("\n")
		b.WriteString(watermarkClause(brand))
	}
	return b.String()
}

// ModelPrompt renders the try-on prompt. Exactly one face clause is emitted.
func ModelPrompt(opts Options, hasFace bool, brand string) string {
	opts = opts.Normalize()

	pose := opts.Pose
	if o, ok := findOption(poses, pose); ok {
		pose = o.Prompt
	}
	background := opts.Background
	if o, ok := findOption(backgrounds, background); ok {
		background = o.Prompt
	}

	faceClause := genericFaceClause
	if hasFace {
		faceClause = faceReferenceClause
	}

	var b strings.Builder
	b.WriteString("Generate a photorealistic try-on image:\n")
	fmt.Fprintf(&b, "- Model: An Indonesian %s model, approximately %s years old.\n", opts.Gender, opts.Age)
	fmt.Fprintf(&b, "- Pose: The model should be in a %s pose.\n", pose)
	b.WriteString(faceClause + "\n")
	b.WriteString("- Expression: A natural and relatable expression, either neutral or a slight smile.\n")
	fmt.Fprintf(&b, "- Body Details: Height approximately %s cm, weight approximately %s kg.\n", opts.Height, opts.Weight)
	b.WriteString("- Image Style: 9:16 portrait aspect ratio.\n")
	fmt.Fprintf(&b, "- Environment: The background should be %s.\n", background)
	b.WriteString("- Clothing: The uploaded clothing items must fit the model perfectly, with accurate fabric textures, colors, and drape.")

	if opts.Instructions != "" {
		b.WriteString("\n- Additional Instructions: " + opts.Instructions)
	}
	if opts.Watermark {
		b.WriteString("\n" + watermarkClause(brand))
	}
	return b.String()
}

// ModelImages returns the full outfit if present, otherwise the filled small
// slots in index order. The face reference always goes last.
func ModelImages(a Assets) []ImagePart {
	var out []ImagePart
	if a.HasFullOutfit() {
		out = append(out, a.FullOutfit)
	} else {
		out = FlatlayImages(a)
	}
	if a.HasFace() {
		out = append(out, a.Face)
	}
	return out
}

func FlatlayImages(a Assets) []ImagePart {
	var out []ImagePart
	for _, p := range a.Slots {
		if !p.IsZero() {
			out = append(out, p)
		}
	}
	return out
}
