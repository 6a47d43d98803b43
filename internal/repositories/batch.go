package repositories

import "go.mongodb.org/mongo-driver/bson/primitive"

// idLookupBatchSize caps the number of ids per $in query. Larger id sets
// are chunked and the results merged.
const idLookupBatchSize = 10

func chunkIDs(ids []primitive.ObjectID) [][]primitive.ObjectID {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]primitive.ObjectID, 0, (len(ids)+idLookupBatchSize-1)/idLookupBatchSize)
	for start := 0; start < len(ids); start += idLookupBatchSize {
		end := start + idLookupBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
