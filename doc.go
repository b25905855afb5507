// github.com/tve/clicks contains drivers for MikroE click boards plugged into a mikroBUS socket
// and wired to the SPI bus, I2C bus and gpio pins of a Linux single board computer.
// It uses periph for the low level access to the hardware, or embd on boards periph doesn't know.
// Each device driver is in its own directory and is stand-alone. The board package maps
// mikroBUS sockets to bus and pin names. Simple demos for each click are in the cmd directory tree.
package clicks
