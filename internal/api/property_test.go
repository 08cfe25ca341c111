package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"flkv/internal/logging"
	"flkv/internal/storage"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func setupPropertyTestRouter(t *testing.T) http.Handler {
	engine := setupTestEngine(t, storage.Limits{})
	t.Cleanup(func() { engine.Close() })

	return NewRESTHandler(engine, logging.NewNopLogger(), nil, 0).SetupRoutes()
}

func TestAPIProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	router := setupPropertyTestRouter(t)

	properties.Property("HTTP PUT then GET returns same value", prop.ForAll(
		func(key string, value []byte) bool {
			putW := doRequest(t, router, http.MethodPut, "/api/v1/kv/put-get/"+key, PutRequest{Value: value})
			if putW.Code != http.StatusOK {
				return false
			}

			getW := doRequest(t, router, http.MethodGet, "/api/v1/kv/put-get/"+key, nil)
			if getW.Code != http.StatusOK {
				return false
			}

			var getResp GetResponse
			if err := json.NewDecoder(getW.Body).Decode(&getResp); err != nil {
				return false
			}
			return getResp.Found && bytes.Equal(getResp.Value, value)
		},
		gen.Identifier(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("HTTP DELETE after PUT makes GET return 404", prop.ForAll(
		func(key string, value string) bool {
			path := "/api/v1/kv/delete/" + key
			if doRequest(t, router, http.MethodPut, path, PutRequest{Value: []byte(value)}).Code != http.StatusOK {
				return false
			}
			if doRequest(t, router, http.MethodDelete, path, nil).Code != http.StatusOK {
				return false
			}
			return doRequest(t, router, http.MethodGet, path, nil).Code == http.StatusNotFound
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("batch applies the last operation per key", prop.ForAll(
		func(keys []int, deletes []bool) bool {
			var ops []BatchOp
			want := make(map[string]string)
			for i, key := range keys {
				full := fmt.Sprintf("batch/%d", key)
				if i < len(deletes) && deletes[i] {
					ops = append(ops, BatchOp{Op: "delete", Key: []byte(full)})
					delete(want, full)
					continue
				}
				value := full + "#" + string(rune('a'+i%26))
				ops = append(ops, BatchOp{Op: "put", Key: []byte(full), Value: []byte(value)})
				want[full] = value
			}

			if doRequest(t, router, http.MethodPost, "/api/v1/batch", BatchRequest{Ops: ops}).Code != http.StatusOK {
				return false
			}

			for _, op := range ops {
				w := doRequest(t, router, http.MethodGet, "/api/v1/kv/"+string(op.Key), nil)
				expected, present := want[string(op.Key)]
				if !present {
					if w.Code != http.StatusNotFound {
						return false
					}
					continue
				}

				var resp GetResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || string(resp.Value) != expected {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 3)),
		gen.SliceOfN(8, gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestAPIListOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("list returns keys in ascending order", prop.ForAll(
		func(keys []string) bool {
			engine := setupTestEngine(t, storage.Limits{})
			defer engine.Close()
			router := NewRESTHandler(engine, nil, nil, 0).SetupRoutes()

			batch := storage.NewBatch()
			for _, key := range keys {
				batch.Put([]byte(key), []byte("v"))
			}
			if err := engine.Write(batch, false); err != nil {
				return false
			}

			w := doRequest(t, router, http.MethodGet, "/api/v1/kv?limit=1000", nil)
			var resp ListResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				return false
			}
			for i := 1; i < len(resp.Items); i++ {
				if bytes.Compare(resp.Items[i-1].Key, resp.Items[i].Key) >= 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
