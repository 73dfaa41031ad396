package knowledge

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragcache/internal/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

const (
	DefaultMaxTokens     = 400
	DefaultOverlapTokens = 80
)

// Chunker splits markdown into retrieval sized pieces. Level 1 and 2 headings start a
// new chunk; code blocks and tables are kept whole.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	md            goldmark.Markdown
}

func NewChunker(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		overlapTokens = DefaultOverlapTokens
		if overlapTokens >= maxTokens {
			overlapTokens = maxTokens / 4
		}
	}
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		md:            goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

func (c *Chunker) Chunk(ctx context.Context, markdown string) []model.Chunk {
	logger := logutil.GetLogger(ctx)
	reader := text.NewReader([]byte(markdown))
	doc := c.md.Parser().Parse(reader)
	source := reader.Source()

	var chunks []model.Chunk
	var parts []string
	var tokens int
	var heading string

	emit := func(content string, typ model.ChunkType) {
		if heading != "" {
			content = "Heading: " + heading + "\n" + content
		}
		chunks = append(chunks, model.Chunk{
			Content:    content,
			Heading:    heading,
			ChunkType:  typ,
			TokenCount: estimateTokens(content),
			Position:   len(chunks),
		})
	}
	flush := func(keepOverlap bool) {
		if len(parts) == 0 {
			return
		}
		emit(strings.Join(parts, "\n\n"), model.ChunkTypeText)
		if !keepOverlap || len(parts) < 2 {
			parts, tokens = nil, 0
			return
		}
		var overlap []string
		overlapTokens := 0
		for i := len(parts) - 1; i > 0; i-- {
			t := estimateTokens(parts[i])
			if overlapTokens+t > c.overlapTokens {
				break
			}
			overlapTokens += t
			overlap = append([]string{parts[i]}, overlap...)
		}
		parts, tokens = overlap, overlapTokens
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			txt := strings.TrimSpace(string(n.Text(source)))
			if n.Level <= 2 {
				flush(false)
				heading = txt
				continue
			}
			parts = append(parts, txt)
			tokens += estimateTokens(txt)
		case *ast.FencedCodeBlock:
			flush(false)
			var sb strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(source))
			}
			lang := string(n.Language(source))
			emit("```"+lang+"\n"+strings.TrimRight(sb.String(), "\n")+"\n```", model.ChunkTypeCode)
		case *east.Table:
			flush(false)
			emit(tableText(n, source), model.ChunkTypeTable)
		default:
			txt := extractText(n, source)
			if txt == "" {
				continue
			}
			t := estimateTokens(txt)
			if tokens > 0 && tokens+t > c.maxTokens {
				flush(true)
			}
			parts = append(parts, txt)
			tokens += t
		}
	}
	flush(false)
	logger.Debug("markdown chunked", zap.Int("size", len(markdown)), zap.Int("chunks", len(chunks)))
	return chunks
}

func tableText(table *east.Table, source []byte) string {
	var rows []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, extractText(cell, source))
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(rows, "\n")
}

// estimateTokens counts words plus one per non ascii rune, so CJK text is not undercounted.
func estimateTokens(s string) int {
	count := 0
	for _, r := range s {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(s))
	if count == 0 && len(s) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node != n && node.Type() == ast.TypeBlock && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if t, ok := node.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
