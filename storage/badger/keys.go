package badger

import "github.com/poiesic/ragbook/memory"

const (
	vectorPrefix       = "vec:"
	vectorDimensionKey = "vecmeta:dimension"
)

func makeVectorKey(key string) []byte {
	return []byte(vectorPrefix + key)
}

func vectorKeyName(k []byte) string {
	return string(k[len(vectorPrefix):])
}

func makeSessionKey(sessionID string) []byte {
	return []byte(memory.SessionKey(sessionID))
}
