package wallet

import "github.com/libranexus/platform/pkg/eventmodel"

// RegisterEvents wires every Wallet event type into registry.
func RegisterEvents(registry *eventmodel.Registry) {
	registry.Register("WalletCreated", func() eventmodel.EventPayload { return &WalletCreated{} })
	registry.Register("WalletBalanceUpdated", func() eventmodel.EventPayload { return &WalletBalanceUpdated{} })
	registry.Register("WalletLateFeeApplied", func() eventmodel.EventPayload { return &WalletLateFeeApplied{} })
	registry.Register("WalletPaymentSuccess", func() eventmodel.EventPayload { return &WalletPaymentSuccess{} })
	registry.Register("WalletPaymentDeclined", func() eventmodel.EventPayload { return &WalletPaymentDeclined{} })

	// WalletPaymentRequest is a process/integration event (SPEC_FULL
	// 4.6); it never appends to the Wallet's own stream.
	registry.Register("WalletPaymentRequest", func() eventmodel.EventPayload { return &WalletPaymentRequest{} })
}
