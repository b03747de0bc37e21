package www

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/icodeforyou/bessquote/database"
	"github.com/icodeforyou/bessquote/logging"
)

type logReader interface {
	GetLogEntries(ctx context.Context, q database.LogQuery) ([]logging.LogEntry, error)
}

type logEntriesResponse struct {
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Entries  []logging.LogEntry `json:"entries"`
}

// NewLogHandler pages through the stored log, newest first. The level query
// parameter sets the minimum level, default DEBUG, and module narrows the
// entries to one module. An unknown level is a bad request.
func NewLogHandler(logger *slog.Logger, db logReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := max(intOrDefault(r.URL, "page", 1), 1)
		pageSize := min(max(intOrDefault(r.URL, "pageSize", 25), 1), 500)

		lvl := slog.LevelDebug
		if s := r.URL.Query().Get("level"); s != "" {
			var ok bool
			if lvl, ok = logging.ParseLevel(s); !ok {
				writeError(w, http.StatusBadRequest, "unknown level "+s)
				return
			}
		}

		e, err := db.GetLogEntries(r.Context(), database.LogQuery{
			MinLevel: lvl,
			Module:   r.URL.Query().Get("module"),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "could not read log")
			return
		}
		if e == nil {
			e = []logging.LogEntry{}
		}

		writeJSON(w, http.StatusOK, logEntriesResponse{Page: page, PageSize: pageSize, Entries: e})
	}
}
