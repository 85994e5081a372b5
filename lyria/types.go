package lyria

// DefaultModel is the realtime music generation model.
const DefaultModel = "models/lyria-realtime-exp"

// Audio format of the generated stream: interleaved 16-bit little-endian
// PCM at 48kHz stereo.
const (
	SampleRate = 48000
	Channels   = 2
)

// MusicScale pins the key signature of the generated music.
type MusicScale string

const (
	ScaleUnspecified          MusicScale = "SCALE_UNSPECIFIED"
	ScaleCMajorAMinor         MusicScale = "C_MAJOR_A_MINOR"
	ScaleDFlatMajorBFlatMinor MusicScale = "D_FLAT_MAJOR_B_FLAT_MINOR"
	ScaleDMajorBMinor         MusicScale = "D_MAJOR_B_MINOR"
	ScaleEFlatMajorCMinor     MusicScale = "E_FLAT_MAJOR_C_MINOR"
	ScaleEMajorDFlatMinor     MusicScale = "E_MAJOR_D_FLAT_MINOR"
	ScaleFMajorDMinor         MusicScale = "F_MAJOR_D_MINOR"
	ScaleGFlatMajorEFlatMinor MusicScale = "G_FLAT_MAJOR_E_FLAT_MINOR"
	ScaleGMajorEMinor         MusicScale = "G_MAJOR_E_MINOR"
	ScaleAFlatMajorFMinor     MusicScale = "A_FLAT_MAJOR_F_MINOR"
	ScaleAMajorGFlatMinor     MusicScale = "A_MAJOR_G_FLAT_MINOR"
	ScaleBFlatMajorGMinor     MusicScale = "B_FLAT_MAJOR_G_MINOR"
	ScaleBMajorAFlatMinor     MusicScale = "B_MAJOR_A_FLAT_MINOR"
)

// WeightedPrompt steers generation: a text plus its relative weight.
// A weight of 0 is equivalent to omitting the prompt entirely.
type WeightedPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// MusicGenerationConfig tunes the realtime generation. Nil fields mean
// "auto": the service chooses, and absence round-trips as absence rather
// than a sentinel value.
type MusicGenerationConfig struct {
	Temperature      *float64   `json:"temperature,omitempty"`
	TopK             *int       `json:"topK,omitempty"`
	Guidance         *float64   `json:"guidance,omitempty"`
	Seed             *int       `json:"seed,omitempty"`
	BPM              *int       `json:"bpm,omitempty"`
	Density          *float64   `json:"density,omitempty"`
	Brightness       *float64   `json:"brightness,omitempty"`
	Scale            MusicScale `json:"scale,omitempty"`
	MuteBass         *bool      `json:"muteBass,omitempty"`
	MuteDrums        *bool      `json:"muteDrums,omitempty"`
	OnlyBassAndDrums *bool      `json:"onlyBassAndDrums,omitempty"`
}
