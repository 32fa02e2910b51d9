package paytr

import "github.com/mstgnz/storegate/payment"

// Register PayTR with the payment factory
func init() {
	payment.Register("paytr", func(cfg payment.Config) (payment.Provider, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
