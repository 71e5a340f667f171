//go:build windows

package transport

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// sioUDPConnReset is SIO_UDP_CONNRESET from mstcpip.h.
const sioUDPConnReset = windows.IOC_IN | windows.IOC_VENDOR | 12

func disableConnReset(fd uintptr) error {
	enable := uint32(0)
	returned := uint32(0)
	size := uint32(unsafe.Sizeof(enable))
	err := windows.WSAIoctl(windows.Handle(fd), sioUDPConnReset, (*byte)(unsafe.Pointer(&enable)), size, nil, 0, &returned, nil, 0)
	if err != nil {
		return os.NewSyscallError("WSAIoctl", err)
	}
	return nil
}
