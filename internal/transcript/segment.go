package transcript

import "github.com/Yates-Labs/reseek/internal/tokenizer"

// Chunk is a fragment annotated with the metadata found in its text.
type Chunk struct {
	Fragment
	StartTime *string `json:"start_time"`
	Speaker   *string `json:"speaker"`
}

// Segment splits text and runs ExtractMetadata over every fragment.
func Segment(tok tokenizer.Tokenizer, text string, maxTokens, overlap int) ([]Chunk, error) {
	fragments, err := Split(tok, text, maxTokens, overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(fragments))
	for i, f := range fragments {
		md := ExtractMetadata(f.Text)
		chunks[i] = Chunk{
			Fragment:  f,
			StartTime: md.Timestamp,
			Speaker:   md.Speaker,
		}
	}
	return chunks, nil
}
