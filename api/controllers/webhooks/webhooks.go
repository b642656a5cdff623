package webhooks

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

// adapterRegistry resolves the configured adapter for a provider so the
// controller can check the delivery signature before touching the service.
type adapterRegistry interface {
	AdapterFor(provider enums.PaymentProvider) providers.Adapter
}

func readPayload(w http.ResponseWriter, r *http.Request, logg *logger.Logger) ([]byte, bool) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
		return nil, false
	}
	return payload, true
}

func signatureAdapter(w http.ResponseWriter, r *http.Request, registry adapterRegistry, provider enums.PaymentProvider, logg *logger.Logger) (providers.Adapter, bool) {
	if registry == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry unavailable"))
		return nil, false
	}
	adapter := registry.AdapterFor(provider)
	if adapter == nil || !adapter.Available() {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, fmt.Sprintf("%s adapter unavailable", provider)))
		return nil, false
	}
	return adapter, true
}

// dispatch hands the normalized event to the orchestrator. Processing
// failures are logged and acknowledged anyway so the provider does not
// retry a delivery the ledger has already rejected; the dedup claim was
// released so a later legitimate redelivery still works.
func dispatch(w http.ResponseWriter, r *http.Request, svc payments.Service, provider enums.PaymentProvider, event payments.WebhookEvent, logg *logger.Logger) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
		return
	}
	if err := svc.HandleWebhook(r.Context(), provider, event); err != nil && logg != nil {
		ctx := logg.WithReference(r.Context(), event.Reference)
		ctx = logg.WithProvider(ctx, provider.String())
		logg.Error(ctx, "webhook processing failed", err)
	}
	responses.WriteSuccess(w, nil)
}
