package artifact

//go:generate mockgen -destination=../mocks/mock_store.go -package=mocks github.com/mengeric/extractjob-go/artifact Store
