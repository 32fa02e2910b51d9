package kuveytturk

import "github.com/mstgnz/storegate/payment"

// Register Kuveyt Türk with the payment factory
func init() {
	payment.Register("kuveytturk", func(cfg payment.Config) (payment.Provider, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, "kuveyt türk", "kuveyt turk")
}
