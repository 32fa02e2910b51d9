package vakifbank

import "github.com/mstgnz/storegate/payment"

// Register VakıfBank with the payment factory
func init() {
	payment.Register("vakifbank", func(cfg payment.Config) (payment.Provider, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, "vakıfbank", "vakif bank")
}
