package fiscal

import "crypto/tls"

// Signer firma el XML del DFE y devuelve el XML con ds:Signature como último hijo de la raíz.
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
