package domain

// KeyPrefix namespaces every key this service writes to the store.
const KeyPrefix = "inscribe:"

// DefaultCollection is the single logical chunk collection per deployment.
const DefaultCollection = "documents"

// DefaultVectorDim matches the 384-dimension sentence embedding models the
// service is configured with by default.
const DefaultVectorDim = 384
