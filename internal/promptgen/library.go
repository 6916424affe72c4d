package promptgen

import "thumbforge/internal/domain"

// Defaults applied when neither the request, the extracted metadata nor
// the matched reference supplies a value.
const (
	DefaultStyle       = "professional"
	DefaultLighting    = "dramatic"
	DefaultComposition = "rule of thirds"
)

// styleOrder fixes the deterministic order variations are generated in.
var styleOrder = []string{
	"professional",
	"bold",
	"minimalist",
	"vibrant",
	"cinematic",
	"playful",
}

var styleDescriptors = map[string]string{
	"professional": "clean professional design with a polished studio finish",
	"bold":         "bold graphic design with thick outlines and heavy visual weight",
	"minimalist":   "minimalist layout with generous negative space and restrained color use",
	"vibrant":      "vibrant saturated colors and an energetic composition",
	"cinematic":    "cinematic still with film-like color grading",
	"playful":      "playful design with exaggerated shapes and fun energy",
}

var moodPhrases = map[string]string{
	"shocked":    "a shocked wide-eyed expression with mouth open in disbelief",
	"excited":    "an excited beaming expression and energetic body language",
	"happy":      "a warm happy smile and relaxed confident posture",
	"serious":    "a serious focused stare and composed expression",
	"angry":      "an angry intense glare with furrowed brows",
	"mysterious": "a mysterious guarded look on a half-lit face",
	"curious":    "a curious raised-eyebrow look with the head slightly tilted",
}

var lightingTerms = map[string]string{
	"dramatic": "dramatic rim lighting with deep shadows",
	"soft":     "soft diffused lighting with gentle falloff",
	"neon":     "neon accent lighting with electric color spill",
	"studio":   "even studio lighting with controlled highlights",
	"natural":  "natural daylight with believable ambient tones",
	"backlit":  "strong backlight with a glowing silhouette edge",
}

var topicKeywords = map[string][]string{
	"gaming":    {"epic gameplay moment", "glowing neon accents", "controller in frame"},
	"tech":      {"sleek gadget close-up", "circuit-pattern backdrop", "futuristic interface glow"},
	"cooking":   {"sizzling dish close-up", "rustic kitchen backdrop", "rich food styling"},
	"fitness":   {"dynamic action pose", "gym environment", "visible determination"},
	"music":     {"stage lighting burst", "headphones detail", "sound-wave motif"},
	"travel":    {"sweeping landscape backdrop", "golden-hour skyline", "wanderlust energy"},
	"finance":   {"rising chart motif", "money-green palette", "confident presenter"},
	"education": {"chalkboard-style callouts", "open book motif", "bright curious tone"},
}

// qualityBlock appears near the end of every prompt. The terms double
// as the quality category of the prompt score.
const qualityBlock = "Render in high resolution, 4k quality, ultra detailed, with sharp focus and professional photography standards."

// closingLine is the call to action every composed prompt ends on.
const closingLine = "The thumbnail must make a viewer stop scrolling and click."

const viralBlock = "Make it eye-catching, attention-grabbing and click-worthy."

type modelHint struct {
	positive string
	negative string
}

var modelHints = map[domain.Model]modelHint{
	domain.ModelFluxSchnell: {
		positive: "Favor crisp edges and a coherent, text-free background.",
		negative: "blurry, low quality, watermark, distorted hands, extra fingers, garbled text",
	},
	domain.ModelFluxDev: {
		positive: "Favor fine-grained detail, accurate anatomy and rich textures.",
		negative: "blurry, low quality, watermark, artifacts, washed out colors",
	},
	domain.ModelDallE3: {
		positive: "Render exactly this scene without reinterpreting the subject.",
	},
}

// styleDescriptor tolerates styles outside the library so callers can
// pass a reference's free-form style straight through.
func styleDescriptor(style string) string {
	if d, ok := styleDescriptors[style]; ok {
		return d
	}
	return style + " style"
}

func moodPhrase(mood string) string {
	if p, ok := moodPhrases[mood]; ok {
		return p
	}
	return "a " + mood + " expression"
}

func lightingTerm(lighting string) string {
	if t, ok := lightingTerms[lighting]; ok {
		return t
	}
	return lighting + " lighting"
}
