package biz

import "fmt"

// Chunk 文档分块。
type Chunk struct {
	// Index 在源文档中的序号，从 0 开始。
	Index int
	// Text 分块文本。
	Text string
	// Source 源文档名称。
	Source string
}

// Chunker 按字符（rune）窗口切分文本，相邻分块重叠 overlap 个字符。
type Chunker struct {
	size    int
	overlap int
}

// NewChunker 创建分块器，要求 size > 0 且 0 <= overlap < size。
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, newStageError(StageChunk, ErrChunking, fmt.Errorf("chunk size %d must be positive", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, newStageError(StageChunk, ErrChunking, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size))
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size 返回分块大小。
func (c *Chunker) Size() int { return c.size }

// Overlap 返回重叠大小。
func (c *Chunker) Overlap() int { return c.overlap }

// Split 切分文本。空文本返回 nil，短于 size 的文本返回一个分块。
// 每个后续分块从上一分块末尾回退 overlap 个字符开始，
// 因此 chunks[0] 加上其余分块去掉前 overlap 个字符即为原文。
func (c *Chunker) Split(text, source string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, n/(c.size-c.overlap)+1)
	start := 0
	for {
		end := min(start+c.size, n)
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Text:   string(runes[start:end]),
			Source: source,
		})
		if end == n {
			return chunks
		}
		start = end - c.overlap
	}
}
