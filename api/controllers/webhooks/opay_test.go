package webhooks

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/opay"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

const opayTestSecret = "OPAYPRV_TEST"

func opayFixture() (*fakePaymentsService, *fakeRegistry) {
	adapter := opay.NewClient(config.OPayConfig{
		PublicKey:  "OPAYPUB_TEST",
		SecretKey:  opayTestSecret,
		MerchantID: "256600000000000",
	}, testLogger())
	return &fakePaymentsService{}, &fakeRegistry{adapters: map[enums.PaymentProvider]providers.Adapter{
		enums.PaymentProviderOPay: adapter,
	}}
}

func opayCallbackBody(reference, status string) []byte {
	payload := fmt.Sprintf(`{"reference":%q,"status":%q}`, reference, status)
	mac := hmac.New(sha512.New, []byte(opayTestSecret))
	mac.Write([]byte(payload))
	digest := hex.EncodeToString(mac.Sum(nil))
	return []byte(fmt.Sprintf(`{"payload":%s,"sha512":%q,"type":"transaction-status"}`, payload, digest))
}

func TestOPayWebhook_SignsPayloadObject(t *testing.T) {
	svc, registry := opayFixture()
	handler := OPayWebhook(svc, registry, testLogger())

	body := opayCallbackBody("op_ref9", "SUCCESS")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/opay", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.Reference != "op_ref9" {
		t.Fatalf("unexpected reference %q", event.Reference)
	}
	if event.EventID != "transaction-status:op_ref9" {
		t.Fatalf("unexpected event id %q", event.EventID)
	}
	if svc.providers[0] != enums.PaymentProviderOPay {
		t.Fatalf("unexpected provider %s", svc.providers[0])
	}
}

func TestOPayWebhook_TamperedPayloadRejected(t *testing.T) {
	svc, registry := opayFixture()
	handler := OPayWebhook(svc, registry, testLogger())

	body := opayCallbackBody("op_ref9", "SUCCESS")
	body = bytes.Replace(body, []byte(`"SUCCESS"`), []byte(`"FAIL"`), 1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/opay", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered payload, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("service should not be invoked on tampered payload")
	}
}

func TestOPayWebhook_MissingSignatureRejected(t *testing.T) {
	svc, registry := opayFixture()
	handler := OPayWebhook(svc, registry, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/opay", bytes.NewReader([]byte(`{"payload":{"reference":"op_x"},"type":"transaction-status"}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
}
