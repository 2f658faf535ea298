package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// readInput returns the contents of path, or of stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return nil, errors.InvalidParam("--file is required")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.InvalidParam("cannot read input").WithDetail(path).WithCause(err)
	}
	return bytes.TrimSpace(data), nil
}

// readBatch accepts either a JSON array of customers or a batch document
// {"customers": [...], "market_context": {...}}.
func readBatch(cmd *cobra.Command, path string) (recommendation.Batch, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return recommendation.Batch{}, err
	}

	var batch recommendation.Batch
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &batch.Customers)
	} else {
		err = json.Unmarshal(data, &batch)
	}
	if err != nil {
		return recommendation.Batch{}, errors.InvalidParam("invalid customer batch").WithDetail(path).WithCause(err)
	}
	return batch, nil
}

// readCustomer accepts one customer document, either bare or wrapped as an
// analyze request {"customer": {...}, "market_context": {...}}.
func readCustomer(cmd *cobra.Command, path string) (*recommendation.AnalyzeRequest, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.InvalidParam("invalid customer document").WithDetail(path).WithCause(err)
	}
	req := &recommendation.AnalyzeRequest{}
	if _, wrapped := probe["customer"]; wrapped {
		err = json.Unmarshal(data, req)
	} else {
		var in customer.Input
		err = json.Unmarshal(data, &in)
		req.Customer = in
	}
	if err != nil {
		return nil, errors.InvalidParam("invalid customer document").WithDetail(path).WithCause(err)
	}
	return req, nil
}
