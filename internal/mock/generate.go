package mock

//go:generate go run go.uber.org/mock/mockgen -package mock -destination clock.go github.com/buildbarn/bb-atomic128/pkg/clock Clock,Timer
