package filters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"
)

// LZWDecode decompresses LZW data. EarlyChange defaults to 1 as in the PDF
// reference; predictors are applied the same way as for FlateDecode.
func LZWDecode(data []byte, params Params) ([]byte, error) {
	earlyChange := getIntParam(params, "EarlyChange", 1)

	rc := lzw.NewReader(bytes.NewReader(data), earlyChange == 1)
	defer rc.Close()

	decoded, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("lzw: %w", err)
	}
	return predict(decoded, params)
}
