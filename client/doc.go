package client

//go:generate mockgen -destination=../mocks/mock_api.go -package=mocks github.com/mengeric/extractjob-go/client API
