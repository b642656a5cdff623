package webhooks

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

const flutterwaveSignatureHeader = "verif-hash"

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID    int64  `json:"id"`
		TxRef string `json:"tx_ref"`
	} `json:"data"`
}

// FlutterwaveWebhook receives charge events from Flutterwave. The verif-hash
// header must match the configured secret hash.
func FlutterwaveWebhook(svc payments.Service, registry adapterRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readPayload(w, r, logg)
		if !ok {
			return
		}

		signature := r.Header.Get(flutterwaveSignatureHeader)
		if signature == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "flutterwave signature missing"))
			return
		}

		adapter, ok := signatureAdapter(w, r, registry, enums.PaymentProviderFlutterwave, logg)
		if !ok {
			return
		}
		if !adapter.VerifyWebhookSignature(payload, signature) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid flutterwave signature"))
			return
		}

		var event flutterwaveEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed flutterwave event"))
			return
		}

		eventID := strconv.FormatInt(event.Data.ID, 10)
		if event.Data.ID == 0 {
			eventID = event.Event + ":" + event.Data.TxRef
		}
		dispatch(w, r, svc, enums.PaymentProviderFlutterwave, payments.WebhookEvent{
			EventID:   eventID,
			Kind:      event.Event,
			Reference: event.Data.TxRef,
			Raw:       payload,
		}, logg)
	}
}
