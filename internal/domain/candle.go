package domain

// Candle is one OHLC bucket of a token's price series.
type Candle struct {
	BucketStart int64 // Unix milliseconds, aligned to the bucket width
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Buys        int // trades on the buy side inside this bucket
	Sells       int // trades on the sell side inside this bucket
}

// Flat returns a gap-filling candle at price p for the given bucket start.
func FlatCandle(bucketStart int64, p float64) Candle {
	return Candle{BucketStart: bucketStart, Open: p, High: p, Low: p, Close: p}
}
