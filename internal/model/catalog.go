package model

// Service is an inspection service companies can offer.
type Service struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Order int    `json:"order" yaml:"order"`
}

// State is a Brazilian federative unit.
type State struct {
	ID   string `json:"id" yaml:"id"`
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Region is a Minas Gerais sub-region.
type Region struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
