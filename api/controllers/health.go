package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/orderflowhq/orderflow-backend/api/responses"
	"github.com/orderflowhq/orderflow-backend/pkg/config"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

const readyProbeTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live", "env": cfg.App.Env})
	}
}

// HealthReady reports readiness only when every dependency answers a ping.
func HealthReady(logg *logger.Logger, dbPing, redisPing pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]pinger{
			"db":    dbPing,
			"redis": redisPing,
		}
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
