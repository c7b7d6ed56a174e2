package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ledgerlab/minichain/business/web/errs"
)

// get calls the node and decodes the response into v.
func get(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, v)
}

// post sends the body as JSON to the node and decodes the response into v.
func post(url string, body any, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, v)
}

func decode(resp *http.Response, v any) error {
	decoder := json.NewDecoder(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var er errs.Response
		if err := decoder.Decode(&er); err != nil {
			return fmt.Errorf("node responded %s", resp.Status)
		}
		if len(er.Fields) > 0 {
			return fmt.Errorf("node responded %s: %s: %v", resp.Status, er.Error, er.Fields)
		}
		return errors.New("node responded " + resp.Status + ": " + er.Error)
	}

	return decoder.Decode(v)
}
