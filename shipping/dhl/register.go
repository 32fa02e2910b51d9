package dhl

import "github.com/mstgnz/storegate/shipping"

// Register DHL with the shipping factory
func init() {
	shipping.Register("dhl", func(cfg shipping.Config) (shipping.Provider, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, "dhl express")
}
