package serde_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/go-eventually-snapshot/serde"
)

type orderState struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

func TestJSON(t *testing.T) {
	t.Run("it works with pointer semantics", func(t *testing.T) {
		mySerde := serde.NewJSON[*orderState]()
		state := &orderState{ID: "order-123", Status: "paid", Total: 1000}

		serialized, err := mySerde.Serialize(state)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"id":"order-123","status":"paid","total":1000}`, string(serialized))

		deserialized, err := mySerde.Deserialize(serialized)
		assert.NoError(t, err)
		assert.Equal(t, state, deserialized)
	})

	t.Run("it works also with by-value semantics", func(t *testing.T) {
		mySerde := serde.NewJSON[orderState]()
		state := orderState{ID: "order-123", Status: "paid", Total: 1000}

		serialized, err := mySerde.Serialize(state)
		assert.NoError(t, err)

		deserialized, err := mySerde.Deserialize(serialized)
		assert.NoError(t, err)
		assert.Equal(t, state, deserialized)
	})

	t.Run("it fails deserialization of invalid json data", func(t *testing.T) {
		deserialized, err := serde.NewJSON[*orderState]().Deserialize([]byte("{"))
		assert.Error(t, err)
		assert.Nil(t, deserialized)
	})
}
