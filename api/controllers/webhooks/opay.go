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

// OPay signs the payload object and ships the digest inside the body
// rather than in a header.
type opayCallback struct {
	Payload json.RawMessage `json:"payload"`
	SHA512  string          `json:"sha512"`
	Type    string          `json:"type"`
}

type opayCallbackPayload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// OPayWebhook receives transaction-status callbacks from OPay.
func OPayWebhook(svc payments.Service, registry adapterRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readPayload(w, r, logg)
		if !ok {
			return
		}

		var callback opayCallback
		if err := json.Unmarshal(body, &callback); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed opay callback"))
			return
		}
		if callback.SHA512 == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "opay signature missing"))
			return
		}

		adapter, ok := signatureAdapter(w, r, registry, enums.PaymentProviderOPay, logg)
		if !ok {
			return
		}
		if !adapter.VerifyWebhookSignature(callback.Payload, callback.SHA512) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid opay signature"))
			return
		}

		var payload opayCallbackPayload
		if err := json.Unmarshal(callback.Payload, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed opay payload"))
			return
		}

		dispatch(w, r, svc, enums.PaymentProviderOPay, payments.WebhookEvent{
			EventID:   callback.Type + ":" + payload.Reference,
			Kind:      callback.Type,
			Reference: payload.Reference,
			Raw:       body,
		}, logg)
	}
}
