package pipeline

// Chunk describes one bounded sub-batch. Transient recipe ids for the
// chunk run from StartID to StartID+Size-1.
type Chunk struct {
	Index   int
	Size    int
	StartID int
}

// SplitChunks splits a requested count into ordered chunks of at most
// chunkSize recipes. The upstream model call has a fixed timeout, so
// each chunk stays small enough to finish inside it and fails
// independently of its siblings.
func SplitChunks(requestedCount, chunkSize int) []Chunk {
	if requestedCount <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}

	var chunks []Chunk
	nextID := 1
	for remaining := requestedCount; remaining > 0; remaining -= chunkSize {
		size := chunkSize
		if remaining < chunkSize {
			size = remaining
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Size:    size,
			StartID: nextID,
		})
		nextID += size
	}
	return chunks
}
