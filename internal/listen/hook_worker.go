package listen

import (
	"context"

	"vadseg/internal/metrics"
)

// hookWorker drains queued jobs until the channel is closed.
func (s *Server) hookWorker(ctx context.Context) {
	defer s.wg.Done()
	for job := range s.hookCh {
		if err := s.hook.Run(ctx, job); err != nil {
			s.logger.Errorf("hook: %v", err)
			continue
		}
		s.incHook(func(m *metrics.Metrics) { m.HooksSent.Inc() })
	}
}
