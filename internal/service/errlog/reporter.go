package errlog

import (
	"context"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const saveTimeout = 5 * time.Second

// Reporter logs a failure and records it in the errors table
type Reporter struct {
	store db.ErrorStore
}

func NewReporter(store db.ErrorStore) *Reporter {
	return &Reporter{store: store}
}

// Report never fails. The record is written with a context detached from
// ctx so a cancelled request still leaves a trace.
func (r *Reporter) Report(ctx context.Context, err error, fields map[string]any) string {
	incident := uuid.NewString()

	entry := logger.FromContext(ctx).WithError(err).WithField("incident_id", incident)
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	entry.Error("Request failed")

	if r == nil || r.store == nil {
		return incident
	}

	meta := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		meta[k] = v
	}
	meta["incident_id"] = incident
	metadata, mErr := json.Marshal(meta)
	if mErr != nil {
		metadata = []byte(`{"incident_id":"` + incident + `"}`)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if sErr := r.store.SaveError(saveCtx, err.Error(), string(metadata)); sErr != nil {
		logger.Log.WithError(sErr).WithField("incident_id", incident).Warn("Failed to persist error record")
	}
	return incident
}
