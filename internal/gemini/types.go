package gemini

// Request is an assembled prompt: instruction text plus the ordered image
// payloads it refers to. Builders in the studio package produce these; the
// client only transports and decodes.
type Request struct {
	Instruction string
	Images      []ImageInput
	AspectRatio string
}

type ImageInput struct {
	DataBase64 string
	MimeType   string
}
