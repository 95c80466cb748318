package commands

import (
	"fmt"
	"io"
	"sync"

	"roomseal/internal/domain"
)

// printer serializes writes from the session goroutines and the prompt.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *printer) entry(e domain.TimelineEntry, self domain.UserID) {
	p.printf("%s\n", formatEntry(e, self))
}

func formatEntry(e domain.TimelineEntry, self domain.UserID) string {
	who := e.Message.SenderName
	if who == "" {
		who = e.Message.SenderUserID.String()
	}
	if e.Message.SenderUserID == self {
		who += " (you)"
	}
	return fmt.Sprintf("[%s] %s: %s", e.Message.CreatedAt.Local().Format("15:04"), who, e.Plaintext)
}
