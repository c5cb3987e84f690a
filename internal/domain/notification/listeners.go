package notification

import (
	"context"
	"log/slog"
)

// Subscription names.
const (
	SubDoctorVerification = "doctor-verification"
	SubUserWelcome        = "user-welcome"
	SubCampaignScheduler  = "campaign-scheduler"
)

// ListenerDefs builds the standard subscription set: verification decisions
// on doctors, welcome mail for new users, and the campaign gate.
func ListenerDefs(classifier *Classifier, gate *CampaignGate, dispatcher *Dispatcher) []SubscriptionDef {
	classify := func(ctx context.Context, ev ChangeEvent) {
		intent := classifier.Classify(ctx, ev)
		if intent == nil {
			return
		}
		if _, err := dispatcher.Dispatch(ctx, intent); err != nil {
			slog.Error("dispatching classified intent failed",
				"kind", intent.Kind,
				"origin_id", intent.OriginID,
				"error", err,
			)
		}
	}

	return []SubscriptionDef{
		{
			Name: SubDoctorVerification,
			Query: Query{
				Collection: CollectionDoctors,
				StatusIn:   []string{VerificationApproved, VerificationRejected},
			},
			Handle: classify,
		},
		{
			Name:   SubUserWelcome,
			Query:  Query{Collection: CollectionUsers},
			Handle: classify,
		},
		{
			Name: SubCampaignScheduler,
			Query: Query{
				Collection: CollectionCampaigns,
				StatusIn:   []string{CampaignScheduled},
			},
			Handle: gate.HandleEvent,
		},
	}
}
