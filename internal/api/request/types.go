package request

// ScanRequest is the request body for scanning a barcode at the bank
type ScanRequest struct {
	Code string `json:"code"`
}
