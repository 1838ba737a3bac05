package metrics

import (
	"github.com/crestlinelabs/waterline/pkg/events"
	"github.com/crestlinelabs/waterline/pkg/governance/approval"
	"github.com/crestlinelabs/waterline/pkg/governance/rotation"
	"github.com/crestlinelabs/waterline/pkg/governance/signer"
	"github.com/crestlinelabs/waterline/pkg/waterfall"
)

// Recorder returns an observer that updates the package collectors from
// governance events. Subscribe it on the shared publisher:
//
//	core.Subscribe(metrics.Recorder())
func Recorder() events.Observer {
	return func(e events.Event) {
		switch e.Name {
		case events.SignerRegistered:
			if s, ok := e.Payload.(*signer.Signer); ok {
				SignersRegisteredTotal.WithLabelValues(string(s.Role)).Inc()
				ActiveSigners.Inc()
			}
		case events.SignerDeactivated:
			if p, ok := e.Payload.(signer.DeactivatedPayload); ok {
				SignersDeactivatedTotal.Inc()
				ActiveSigners.Set(float64(p.ActiveCount))
			}
		case events.ApprovalRequested:
			if req, ok := e.Payload.(*approval.Request); ok {
				ApprovalRequestsTotal.WithLabelValues(string(req.Action)).Inc()
			}
		case events.ApprovalApproved, events.ApprovalRejected, events.ApprovalExpired:
			if p, ok := e.Payload.(approval.ResolutionPayload); ok {
				ApprovalResolutionsTotal.WithLabelValues(string(p.Action), string(p.Status)).Inc()
			}
		case events.RotationApproved, events.RotationExecuted:
			if p, ok := e.Payload.(rotation.StagePayload); ok {
				RotationStagesTotal.WithLabelValues(string(p.Type), string(p.Status)).Inc()
			}
		case events.RotationProposed:
			if rot, ok := e.Payload.(*rotation.Rotation); ok {
				RotationStagesTotal.WithLabelValues(string(rot.Type), string(rot.Status)).Inc()
			}
		case events.DistributionExecuted:
			if d, ok := e.Payload.(*waterfall.Distribution); ok {
				DistributionsTotal.WithLabelValues(string(d.Status)).Inc()
				for _, a := range d.Allocations {
					amount, _ := a.Allocated.Float64()
					DistributedAmountTotal.Add(amount)
				}
			}
		}
	}
}
