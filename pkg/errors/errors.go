package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrConfigLoad      = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect = "DATABASE_CONNECT_ERROR"
	ErrRPConnect       = "RPC_CONNECT_ERROR"
	ErrInvalidInput    = "INVALID_INPUT_ERROR"
	ErrDepositProcess  = "DEPOSIT_PROCESS_ERROR"
	ErrRoiCalc         = "ROI_CALCULATION_ERROR"
	ErrRankUpgrade     = "RANK_UPGRADE_ERROR"
	ErrPoolCalc        = "POOL_CALCULATION_ERROR"
	ErrWithdrawal      = "WITHDRAWAL_ERROR"
	ErrWallet          = "WALLET_ERROR"
	ErrLedger          = "LEDGER_ERROR"
)
