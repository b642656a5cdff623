package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

const paystackSignatureHeader = "X-Paystack-Signature"

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// PaystackWebhook receives charge events from Paystack. The raw body is
// HMAC-checked before anything else looks at it.
func PaystackWebhook(svc payments.Service, registry adapterRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readPayload(w, r, logg)
		if !ok {
			return
		}

		signature := r.Header.Get(paystackSignatureHeader)
		if signature == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "paystack signature missing"))
			return
		}

		adapter, ok := signatureAdapter(w, r, registry, enums.PaymentProviderPaystack, logg)
		if !ok {
			return
		}
		if !adapter.VerifyWebhookSignature(payload, signature) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid paystack signature"))
			return
		}

		var event paystackEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed paystack event"))
			return
		}

		// Paystack does not send a delivery id; the event name plus the
		// charge reference identifies one logical delivery.
		dispatch(w, r, svc, enums.PaymentProviderPaystack, payments.WebhookEvent{
			EventID:   event.Event + ":" + event.Data.Reference,
			Kind:      event.Event,
			Reference: event.Data.Reference,
			Raw:       payload,
		}, logg)
	}
}
