package payments

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// Reference prefixes, one per provider. Verify uses them to route an
// unrecorded reference back to the gateway that issued it.
var referencePrefixes = map[enums.PaymentProvider]string{
	enums.PaymentProviderPaystack:     "ps",
	enums.PaymentProviderFlutterwave:  "flw",
	enums.PaymentProviderOPay:         "op",
	enums.PaymentProviderBankTransfer: "bt",
}

const referenceRandomLength = 4

// NewReference mints a provider-scoped payment reference of the form
// {prefix}_{base36 millis}_{random}. Every initialize call gets a fresh one,
// so retried checkouts never collide on provider_ref.
func NewReference(provider enums.PaymentProvider) (string, error) {
	prefix, ok := referencePrefixes[provider]
	if !ok {
		return "", fmt.Errorf("no reference prefix for provider %q", provider)
	}
	random, err := randomBase36(referenceRandomLength)
	if err != nil {
		return "", err
	}
	millis := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return strings.Join([]string{prefix, millis, random}, "_"), nil
}

func randomBase36(length int) (string, error) {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	out := make([]byte, length)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
