package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin/binding"
)

// numberJSON binds request bodies like binding.JSON but keeps numbers as
// json.Number, so caller values such as int64 bounds reach prompts unchanged.
type numberJSON struct{}

func (numberJSON) Name() string { return "json" }

func (numberJSON) Bind(req *http.Request, obj any) error {
	if req == nil || req.Body == nil {
		return errors.New("invalid request")
	}
	decoder := json.NewDecoder(req.Body)
	decoder.UseNumber()
	if err := decoder.Decode(obj); err != nil {
		return err
	}
	if binding.Validator == nil {
		return nil
	}
	return binding.Validator.ValidateStruct(obj)
}
