package embed

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"planetcf/internal/domain/entity"
	"planetcf/internal/repository"
)

const embeddingTimeout = 30 * time.Second

const titlePrefixMaxChars = 200
const contentPrefixMaxChars = 2000

var (
	embeddingPendingTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planetcf_embedding_pending_total",
		Help: "Number of pending embedding operations",
	})
	embeddingProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planetcf_embedding_processed_total",
		Help: "Total embeddings processed",
	}, []string{"status"})
)

// Hook generates and stores an entry's embedding asynchronously, never
// blocking the Fetcher's upsert path and never propagating a failure:
// a missing vector only degrades search(), it does not lose the entry.
type Hook struct {
	provider Provider
	vectors  repository.VectorRepository
	enabled  bool
}

func NewHook(provider Provider, vectors repository.VectorRepository, enabled bool) *Hook {
	return &Hook{provider: provider, vectors: vectors, enabled: enabled}
}

// EmbedEntryAsync spawns a goroutine that embeds and stores the vector
// for e. ctx is used only to read a correlation id for logging; the
// embedding call itself runs against a detached context so it outlives
// the caller's request.
func (h *Hook) EmbedEntryAsync(ctx context.Context, e entity.Entry) {
	if !h.enabled {
		return
	}
	correlationID, _ := ctx.Value(correlationIDKey).(string)
	if correlationID == "" {
		correlationID = "unknown"
	}
	go h.embedEntry(correlationID, e)
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

func (h *Hook) embedEntry(correlationID string, e entity.Entry) {
	embeddingPendingTotal.Inc()
	completed := false
	defer func() {
		if !completed {
			embeddingPendingTotal.Dec()
			embeddingProcessedTotal.WithLabelValues("panic").Inc()
		}
		if r := recover(); r != nil {
			slog.Error("panic in embedding hook",
				slog.String("correlation_id", correlationID),
				slog.Int64("entry_id", e.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), embeddingTimeout)
	defer cancel()

	text := e.Title + "\n\n" + truncateContentPrefix(e.Content)
	start := time.Now()
	vec, err := h.provider.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		completed = true
		embeddingPendingTotal.Dec()
		embeddingProcessedTotal.WithLabelValues("failure").Inc()
		slog.Warn("entry embedding failed (non-blocking)",
			slog.String("correlation_id", correlationID),
			slog.Int64("entry_id", e.ID),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return
	}

	if err := h.vectors.Upsert(ctx, e.ID, vec, truncateTitlePrefix(e.Title)); err != nil {
		completed = true
		embeddingPendingTotal.Dec()
		embeddingProcessedTotal.WithLabelValues("storage_failure").Inc()
		slog.Warn("entry embedding storage failed (non-blocking)",
			slog.String("correlation_id", correlationID),
			slog.Int64("entry_id", e.ID),
			slog.Any("error", err))
		return
	}

	completed = true
	embeddingPendingTotal.Dec()
	embeddingProcessedTotal.WithLabelValues("success").Inc()
	slog.Info("entry embedding generated",
		slog.String("correlation_id", correlationID),
		slog.Int64("entry_id", e.ID),
		slog.Duration("duration", duration))
}

func truncateTitlePrefix(title string) string {
	r := []rune(title)
	if len(r) <= titlePrefixMaxChars {
		return title
	}
	return string(r[:titlePrefixMaxChars])
}

// truncateContentPrefix bounds the sanitized content fed into the
// embedding text so a single long entry can't dominate the provider's
// input size or cost.
func truncateContentPrefix(content string) string {
	r := []rune(content)
	if len(r) <= contentPrefixMaxChars {
		return content
	}
	return string(r[:contentPrefixMaxChars])
}
