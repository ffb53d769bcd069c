package models

import "github.com/m-mizutani/goerr/v2"

// ErrNoData a symbol has no price history
var ErrNoData = goerr.New("no price data")
