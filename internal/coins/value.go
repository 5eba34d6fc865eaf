package coins

import "fmt"

// Value is an amount of money in cents.
type Value int

// Cents returns v as an integer number of cents.
func (v Value) Cents() int {
	return int(v)
}

// Dollars returns v in dollars.
func (v Value) Dollars() float64 {
	return float64(v) / 100
}

// String formats v as dollars with two decimals, e.g. "$0.61".
func (v Value) String() string {
	sign := ""
	c := int(v)
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}

// TotalValue sums the face value of coins. The side of a coin does not affect
// its value.
func TotalValue(coins []ClassifiedCoin) Value {
	var total Value
	for _, c := range coins {
		total += Value(c.Denomination.Cents())
	}
	return total
}
