package ptt

import "github.com/mstgnz/storegate/shipping"

// Register PTT Kargo with the shipping factory
func init() {
	shipping.Register("ptt", func(cfg shipping.Config) (shipping.Provider, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, "ptt kargo")
}
