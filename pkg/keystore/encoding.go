package keystore

import (
	"encoding/json"
	"fmt"
)

// Records are stored under prefixed keys so future data types can share the
// database without collisions:
//
//	Data Type    Prefix   Key Format    Value Type
//	==============================================
//	Key Record   "k:"     k:<name>      Key (JSON)
const prefixKey = "k:"

// keyRecord generates the database key for a named key record.
func keyRecord(name string) []byte {
	return []byte(prefixKey + name)
}

func encodeKey(key *Key) ([]byte, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encoding key %q: %w", key.Name, err)
	}
	return data, nil
}

func decodeKey(data []byte) (*Key, error) {
	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("decoding key record: %w", err)
	}
	return &key, nil
}
