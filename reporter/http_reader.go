// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"io"
	"net/http"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

func (hr *HttpReader) GetHealth() (string, error) {
	return hr.get(ROUTE_HEALTH)
}

func (hr *HttpReader) GetTransactions() (string, error) {
	return hr.get(ROUTE_TRANSACTIONS)
}

func (hr *HttpReader) GetTransaction(id string) (string, error) {
	return hr.get(ROUTE_TRANSACTIONS + "/" + id)
}

func (hr *HttpReader) get(route string) (string, error) {
	url := "http://" + hr.serverIP + ":" + hr.serverPort + route

	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}
