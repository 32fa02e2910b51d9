package yurtici

import "github.com/mstgnz/storegate/shipping"

// Register Yurtiçi Kargo with the shipping factory
func init() {
	shipping.Register("yurtici", func(cfg shipping.Config) (shipping.Provider, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, "yurtici kargo", "yurtiçi", "yurtiçi kargo")
}
